// Package postprocess strips the wrapping that chat models put around a
// translation they were told to return bare.
//
// Chat, Claude and Ernie adapters run their non-streaming output through
// Clean. Streamed fragments are delivered untouched.
package postprocess

import (
	"regexp"
	"strings"
)

// step is one rewrite of the model output. Steps run in order and each sees
// the trimmed result of the previous one.
type step struct {
	name  string
	apply func(string) string
}

var steps = []step{
	{"reasoning", dropReasoning},
	{"fence", unfence},
	{"preamble", dropPreamble},
	{"quotes", unquote},
}

// Clean returns text with reasoning blocks, a surrounding code fence, a
// "Here is the translation:" style preamble and outer quotes removed.
func Clean(text string) string {
	text = strings.TrimSpace(text)
	for _, s := range steps {
		text = strings.TrimSpace(s.apply(text))
	}
	return text
}

// RE2 has no backreferences, so every tag pair is spelled out.
var reasoningRe = regexp.MustCompile(
	`(?is)<thinking>.*?</thinking>|<think>.*?</think>|<reasoning>.*?</reasoning>|<reflection>.*?</reflection>`,
)

// An opening tag with no close means the model ran out of tokens mid-thought.
var openReasoningRe = regexp.MustCompile(
	`(?is)(?:<thinking>|<think>|<reasoning>|<reflection>).*$`,
)

func dropReasoning(text string) string {
	text = reasoningRe.ReplaceAllString(text, "")
	return openReasoningRe.ReplaceAllString(text, "")
}

var fenceRe = regexp.MustCompile("(?s)^```[a-zA-Z0-9_-]*\\s*\n(.*?)\n?```$")

func unfence(text string) string {
	if m := fenceRe.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return text
}

// Anchored at the start and required to end in a colon so that a sentence
// which merely begins with "Here is" survives.
var preambleRes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^here(?:'s| is)(?: the| your)? (?:translated |final )?(?:translation|text)(?: (?:in|to) [\p{L} ]+)?\s*:`),
	regexp.MustCompile(`(?i)^(?:the )?(?:translation|translated text)(?: (?:in|to) [\p{L} ]+)?\s*:`),
	regexp.MustCompile(`(?i)^(?:certainly|sure|of course)[,.!]? here(?:'s| is)(?: the| your)? (?:translated )?(?:translation|text)(?: (?:in|to) [\p{L} ]+)?\s*:`),
}

func dropPreamble(text string) string {
	for _, re := range preambleRes {
		if loc := re.FindStringIndex(text); loc != nil {
			return text[loc[1]:]
		}
	}
	return text
}

var quotePairs = map[rune]rune{
	'"':      '"',
	'\'':     '\'',
	'«':      '»',
	'“': '”',
	'‘': '’',
	'「':      '」',
}

// unquote removes one matching pair of outer quotes.
func unquote(text string) string {
	runes := []rune(text)
	if len(runes) < 2 {
		return text
	}
	if closing, ok := quotePairs[runes[0]]; ok && runes[len(runes)-1] == closing {
		return string(runes[1 : len(runes)-1])
	}
	return text
}
