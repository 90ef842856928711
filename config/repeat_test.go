package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandRepeatFor_Scenario(t *testing.T) {
	doc := map[string]any{
		"inputs": []any{
			map[string]any{
				"name": "db",
				"tasks": []any{
					map[string]any{
						"name": "t_$i",
						"cron": "$minute * * * *",
						"repeat_for": map[string]any{
							"table":  []any{"a", "b", "c"},
							"minute": []any{0, 20, 40},
						},
						"params": map[string]any{"table": "$table"},
					},
				},
			},
		},
	}
	require.NoError(t, expandRepeatFor(doc))

	tasks := asList(asMap(asList(doc["inputs"])[0])["tasks"])
	require.Len(t, tasks, 3)

	wantNames := []string{"t_0", "t_1", "t_2"}
	wantCrons := []string{"0 * * * *", "20 * * * *", "40 * * * *"}
	wantTables := []string{"a", "b", "c"}

	for i, item := range tasks {
		task := asMap(item)
		assert.Equal(t, wantNames[i], task["name"])
		assert.Equal(t, wantCrons[i], task["cron"])
		assert.Equal(t, wantTables[i], asMap(task["params"])["table"])
		_, hasRepeat := task["repeat_for"]
		assert.False(t, hasRepeat)
	}
}

func TestExpandRepeatFor_UnequalLengthIsError(t *testing.T) {
	doc := map[string]any{
		"inputs": []any{
			map[string]any{
				"tasks": []any{
					map[string]any{
						"name": "t_$i",
						"repeat_for": map[string]any{
							"a": []any{1, 2, 3},
							"b": []any{1, 2},
						},
					},
				},
			},
		},
	}
	err := expandRepeatFor(doc)
	require.Error(t, err)
}

func TestExpandRepeatFor_RequiresVariableInName(t *testing.T) {
	doc := map[string]any{
		"inputs": []any{
			map[string]any{
				"tasks": []any{
					map[string]any{
						"name": "static_name",
						"repeat_for": map[string]any{
							"a": []any{1, 2},
						},
					},
				},
			},
		},
	}
	err := expandRepeatFor(doc)
	require.Error(t, err)
}
