package translator

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"encoding/json"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
)

const (
	DefaultAlibabaURL = "https://mt.aliyuncs.com/"

	alibabaTimestampLayout = "2006-01-02T15:04:05Z"
)

// AlibabaService calls the Alibaba Cloud machine translation RPC endpoint.
// Every request is signed with the account's key pair.
type AlibabaService struct {
	client *resty.Client
	now    func() time.Time
	nonce  func() string
}

func NewAlibabaService() *AlibabaService {
	return &AlibabaService{
		client: newRESTClient(15 * time.Second),
		now:    time.Now,
		nonce:  func() string { return uuid.NewString() },
	}
}

func (s *AlibabaService) Name() string {
	return "Alibaba"
}

func (s *AlibabaService) Translate(ctx context.Context, cfg ProviderConfig, req TranslateRequest) (*Result, error) {
	result := &Result{Name: s.Name()}
	start := time.Now()
	defer func() { result.Latency = time.Since(start) }()

	if cfg.APIKey == "" || cfg.SecretKey == "" {
		return fail(result, MissingConfig(s.Name(), MsgKeyPairRequired))
	}

	source := req.SourceLang
	if source == "" {
		source = "auto"
	}

	params := map[string]string{
		"Action":           "TranslateGeneral",
		"Format":           "JSON",
		"Version":          "2018-10-12",
		"AccessKeyId":      cfg.APIKey,
		"SignatureMethod":  "HMAC-SHA1",
		"Timestamp":        s.now().UTC().Format(alibabaTimestampLayout),
		"SignatureVersion": "1.0",
		"SignatureNonce":   s.nonce(),
		"SourceLanguage":   source,
		"TargetLanguage":   req.TargetLang,
		"SourceText":       req.Text,
		"Scene":            "general",
		"FormatType":       "text",
	}
	params["Signature"] = sign("POST", params, cfg.SecretKey)

	ctx, cancel := withTimeout(ctx, cfg.Timeout)
	defer cancel()

	resp, err := s.client.R().
		SetContext(ctx).
		SetFormData(params).
		Post(firstNonEmpty(cfg.APIURL, DefaultAlibabaURL))
	if err := checkResponse(s.Name(), resp, err); err != nil {
		return fail(result, err)
	}

	var body struct {
		Data *struct {
			Translated string `json:"Translated"`
		} `json:"Data"`
		Message string `json:"Message"`
	}
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return fail(result, Malformed(s.Name(), "failed to parse Alibaba response", err))
	}
	if body.Data == nil || body.Data.Translated == "" {
		return fail(result, Malformed(s.Name(), firstNonEmpty(body.Message, "Unknown error from Alibaba"), nil))
	}

	result.Text = body.Data.Translated
	return result, nil
}

// percentEncode applies the RFC 3986 flavour Alibaba signs against.
func percentEncode(s string) string {
	encoded := url.QueryEscape(s)
	encoded = strings.ReplaceAll(encoded, "+", "%20")
	encoded = strings.ReplaceAll(encoded, "*", "%2A")
	return strings.ReplaceAll(encoded, "%7E", "~")
}

// canonicalQuery joins the encoded parameters in ascending key order.
// A "Signature" entry is ignored.
func canonicalQuery(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		if k == "Signature" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(percentEncode(k))
		b.WriteByte('=')
		b.WriteString(percentEncode(params[k]))
	}
	return b.String()
}

func sign(method string, params map[string]string, secret string) string {
	stringToSign := method + "&" + percentEncode("/") + "&" + percentEncode(canonicalQuery(params))
	mac := hmac.New(sha1.New, []byte(secret+"&"))
	mac.Write([]byte(stringToSign))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
