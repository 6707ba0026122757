package knowledge

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanNormalizesWhitespace(t *testing.T) {
	out := Clean("Data   retention\tpolicy\n\napplies")
	assert.Equal(t, "Data retention policy applies", out)
}

func TestCleanRemovesDisallowedCharacters(t *testing.T) {
	out := Clean("Limit: 30 days @ most ©")
	assert.NotContains(t, out, "@")
	assert.NotContains(t, out, "©")
	assert.Contains(t, out, "Limit: 30 days")
}

func TestCleanKeepsAllowedPunctuation(t *testing.T) {
	in := "Sections (a), [b]; see: file/path.txt - \"quoted\" 'text'?"
	out := Clean(in)
	for _, ch := range []string{"(", ")", "[", "]", ";", ":", "/", ".", "-", "\"", "'", "?"} {
		assert.Contains(t, out, ch)
	}
}

func TestCleanIdempotent(t *testing.T) {
	inputs := []string{
		"Data   retention\tpolicy\n\napplies",
		"Limit: 30 days @ most",
		"  already clean text  ",
		"ｆｕｌｌｗｉｄｔｈ１２３",
	}
	for _, in := range inputs {
		once := Clean(in)
		twice := Clean(once)
		assert.Equal(t, once, twice)
	}
}

func TestCleanEmptyInput(t *testing.T) {
	assert.Equal(t, "", Clean(""))
	assert.Equal(t, "", Clean("   \n\t  "))
}

func TestSplitCoversAllText(t *testing.T) {
	text := strings.Repeat("abcde ", 100)
	chunker := NewChunker(100, 20)

	chunks := chunker.Split(text)
	require.NotEmpty(t, chunks)

	clean := []rune(Clean(text))
	step := 100 - 20

	for i, c := range chunks {
		assert.Equal(t, i, c.Index)

		// 每个窗口都是清洗文本在 i*step 处的切片
		start := i * step
		end := start + 100
		if end > len(clean) {
			end = len(clean)
		}
		assert.Equal(t, string(clean[start:end]), c.Text)
	}

	// 最后一个窗口必须触达文本末尾
	lastStart := (len(chunks) - 1) * step
	assert.Equal(t, string(clean[lastStart:]), chunks[len(chunks)-1].Text)
}

func TestSplitShortText(t *testing.T) {
	chunker := NewChunker(800, 200)
	chunks := chunker.Split("short policy text")
	require.Len(t, chunks, 1)
	assert.Equal(t, 0, chunks[0].Index)
	assert.Equal(t, "short policy text", chunks[0].Text)
}

func TestSplitEmptyText(t *testing.T) {
	chunker := NewChunker(800, 200)
	assert.Nil(t, chunker.Split(""))
	assert.Nil(t, chunker.Split("  \n  "))
}

func TestSplitOverlapNotSmallerThanSize(t *testing.T) {
	// overlap >= chunkSize 时步长退化为1，不能死循环
	chunker := NewChunker(5, 10)
	chunks := chunker.Split("abcdefghij")
	require.NotEmpty(t, chunks)
	assert.Len(t, chunks, 10)
	assert.Equal(t, "abcde", chunks[0].Text)
	assert.Equal(t, "bcdef", chunks[1].Text)
	assert.Equal(t, "j", chunks[len(chunks)-1].Text)
}

func TestNewChunkerDefaults(t *testing.T) {
	chunker := NewChunker(0, -5)
	chunks := chunker.Split(strings.Repeat("x", 900))
	require.Len(t, chunks, 2)
	assert.Len(t, chunks[0].Text, 800)
	assert.Len(t, chunks[1].Text, 100)
}
