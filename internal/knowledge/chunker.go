package knowledge

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Chunk 表示分块后的文本结构
type Chunk struct {
	Index int
	Text  string
}

// Clean 清洗原始文本：NFKC规范化、控制字符折叠、
// 剔除白名单以外的字符、压缩连续空白并去除首尾空白。
// 对已清洗文本重复调用结果不变。
func Clean(text string) string {
	if text == "" {
		return ""
	}

	normalized := norm.NFKC.String(text)

	var builder strings.Builder
	builder.Grow(len(normalized))

	var prevSpace bool
	for _, r := range normalized {
		if unicode.IsSpace(r) {
			// 回车、制表符等统一折叠为单个空格
			if prevSpace {
				continue
			}
			builder.WriteRune(' ')
			prevSpace = true
			continue
		}
		if !isAllowedRune(r) {
			// 白名单之外的字符替换为空格
			if prevSpace {
				continue
			}
			builder.WriteRune(' ')
			prevSpace = true
			continue
		}
		builder.WriteRune(r)
		prevSpace = false
	}

	return strings.TrimSpace(builder.String())
}

// isAllowedRune 判断字符是否在允许范围内：
// 字母、数字、常用标点、括号、斜杠
func isAllowedRune(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsDigit(r) {
		return true
	}
	switch r {
	case '.', ',', ';', ':', '?', '!', '\'', '"', '-', '(', ')', '[', ']', '/', '\\':
		return true
	}
	return false
}

// Chunker 文本分块器，按固定宽度滑动窗口切分
type Chunker struct {
	chunkSize    int
	chunkOverlap int
}

// NewChunker 创建分块器
func NewChunker(chunkSize, overlap int) *Chunker {
	if chunkSize <= 0 {
		chunkSize = 800
	}
	if overlap < 0 {
		overlap = 0
	}
	return &Chunker{
		chunkSize:    chunkSize,
		chunkOverlap: overlap,
	}
}

// Split 清洗文本后切分为多个chunk。
// 窗口按字符（rune）偏移滑动，不感知句子边界；
// 步长至少为1，overlap >= chunkSize 时也不会死循环。
// 最后一个chunk可能短于chunkSize。空输入返回nil。
func (c *Chunker) Split(text string) []Chunk {
	clean := Clean(text)
	if clean == "" {
		return nil
	}

	runes := []rune(clean)

	step := c.chunkSize - c.chunkOverlap
	if step < 1 {
		step = 1
	}

	var chunks []Chunk
	for start := 0; start < len(runes); start += step {
		end := start + c.chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, Chunk{
			Index: len(chunks),
			Text:  string(runes[start:end]),
		})
	}

	return chunks
}
