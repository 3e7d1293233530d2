package registry

import "github.com/valpere/perekladach/internal/translator"

const (
	ZhipuURL   = "https://open.bigmodel.cn/api/paas/v4/chat/completions"
	ZhipuModel = "glm-4-flash"

	GroqURL   = "https://api.groq.com/openai/v1/chat/completions"
	GroqModel = "llama3-8b-8192"

	GeminiURL   = "https://generativelanguage.googleapis.com/v1beta/openai/chat/completions"
	GeminiModel = "gemini-1.5-flash"

	DeepSeekURL   = "https://api.deepseek.com/chat/completions"
	DeepSeekModel = "deepseek-chat"
)

// DefaultServiceNames are the providers asked when a request lists none.
var DefaultServiceNames = []string{"OpenAI", "DeepL", "Alibaba", "GoogleFree"}

func chat(key, name, url, model string, aliases ...string) Entry {
	return Entry{
		Key:           key,
		Name:          name,
		Kind:          KindChat,
		Aliases:       aliases,
		Credentials:   RequiresAPIKey,
		DefaultAPIURL: url,
		DefaultModel:  model,
		Translator:    translator.NewChatService(name, url, model),
	}
}

// Entries returns a fresh copy of every built-in provider, each with its own
// adapter instance.
func Entries() []Entry {
	return []Entry{
		chat("openai", "OpenAI", translator.DefaultOpenAIURL, translator.DefaultOpenAIModel, "chatgpt", "gpt"),
		chat("zhipu", "Zhipu", ZhipuURL, ZhipuModel, "glm", "bigmodel"),
		chat("groq", "Groq", GroqURL, GroqModel),
		chat("gemini", "Gemini", GeminiURL, GeminiModel),
		chat("deepseek", "DeepSeek", DeepSeekURL, DeepSeekModel),
		{
			Key:           "claude",
			Name:          "Claude",
			Kind:          KindClaude,
			Aliases:       []string{"anthropic"},
			Credentials:   RequiresAPIKey,
			DefaultAPIURL: translator.DefaultClaudeURL,
			DefaultModel:  translator.DefaultClaudeModel,
			Translator:    translator.NewClaudeService(),
		},
		{
			Key:           "ernie",
			Name:          "Ernie",
			Kind:          KindErnie,
			Aliases:       []string{"wenxin", "baidu"},
			Credentials:   RequiresKeyPair,
			DefaultAPIURL: translator.DefaultErnieURL,
			DefaultModel:  translator.DefaultErnieModel,
			Translator:    translator.NewErnieService(),
		},
		{
			Key:        "deepl",
			Name:       "DeepL",
			Kind:       KindDeepL,
			Translator: translator.NewDeepLService(),
		},
		{
			Key:        "google",
			Name:       "Google",
			Kind:       KindGoogle,
			Aliases:    []string{"google cloud", "google translate"},
			Translator: translator.NewGoogleService(),
		},
		{
			Key:           "alibaba",
			Name:          "Alibaba",
			Kind:          KindAlibaba,
			Aliases:       []string{"aliyun"},
			Credentials:   RequiresKeyPair,
			DefaultAPIURL: translator.DefaultAlibabaURL,
			Translator:    translator.NewAlibabaService(),
		},
		{
			Key:           "googlefree",
			Name:          "GoogleFree",
			Kind:          KindGoogleFree,
			Aliases:       []string{"google native", "google web"},
			DefaultAPIURL: translator.DefaultGoogleFreeURL,
			Translator:    translator.NewGoogleFreeService(),
		},
	}
}

// Default returns the registry of built-in providers.
func Default() *Registry {
	r, err := New(Entries(), DefaultServiceNames)
	if err != nil {
		panic(err)
	}
	return r
}
