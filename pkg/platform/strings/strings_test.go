package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitAndTrim(t *testing.T) {
	t.Run("splits broker lists with noise", func(t *testing.T) {
		got := SplitAndTrim(" kafka-1:9092, kafka-2:9092 ,,kafka-1:9092", ",")
		assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, got)
	})

	t.Run("all-empty input yields empty slice", func(t *testing.T) {
		assert.Empty(t, SplitAndTrim(" , ,", ","))
	})
}

func TestDedupeAndTrim(t *testing.T) {
	got := DedupeAndTrim([]string{"  foo ", "bar", "foo", "", "  "})
	assert.Equal(t, []string{"foo", "bar"}, got)
}
