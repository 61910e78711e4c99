// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package markdown

import (
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	chromaStyles "github.com/alecthomas/chroma/v2/styles"
)

// CodeBlock is one fenced block of a reply.
type CodeBlock struct {
	Language string
	Code     string
}

// CodeBlocks returns the fenced code blocks of md in order. An unterminated
// block runs to the end of the text.
func CodeBlocks(md string) []CodeBlock {
	var blocks []CodeBlock
	var cur *CodeBlock
	var body []string

	for _, line := range strings.Split(md, "\n") {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "```") {
			if cur != nil {
				body = append(body, line)
			}
			continue
		}
		if cur == nil {
			cur = &CodeBlock{Language: strings.TrimSpace(strings.TrimPrefix(trimmed, "```"))}
			body = body[:0]
			continue
		}
		cur.Code = strings.Join(body, "\n")
		blocks = append(blocks, *cur)
		cur = nil
	}
	if cur != nil {
		cur.Code = strings.Join(body, "\n")
		blocks = append(blocks, *cur)
	}
	return blocks
}

// Highlight colors code for a 256-color terminal. The language is guessed
// when empty or unknown. On failure the code comes back unchanged.
func Highlight(code, language string) string {
	lexer := lexers.Get(language)
	if lexer == nil {
		lexer = lexers.Analyse(code)
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	style := chromaStyles.Get("monokai")
	if style == nil {
		style = chromaStyles.Fallback
	}
	formatter := formatters.Get("terminal256")
	if formatter == nil {
		formatter = formatters.Fallback
	}

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return code
	}
	var buf strings.Builder
	if err := formatter.Format(&buf, style, iterator); err != nil {
		return code
	}
	return buf.String()
}
