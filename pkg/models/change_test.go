package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseChangeKind(t *testing.T) {
	tests := []struct {
		in      string
		want    ChangeKind
		wantErr bool
	}{
		{in: "player", want: KindPlayer},
		{in: "Pet", want: KindPet},
		{in: "minion-or-mount", want: KindMinionOrMount},
		{in: "mount", want: KindMinionOrMount},
		{in: " companion ", want: KindCompanion},
		{in: "housing", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseChangeKind(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestChangeSignalJSONUsesKindNames(t *testing.T) {
	data, err := json.Marshal(ChangeSignal{Kind: KindMinionOrMount, Handle: "0x10"})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"kind":"minion_or_mount"`)

	var back ChangeSignal
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, KindMinionOrMount, back.Kind)

	_, err = json.Marshal(ChangeSignal{Kind: ChangeKind(42)})
	assert.Error(t, err)
}

func TestParseCategory(t *testing.T) {
	c, err := ParseCategory("syncshell")
	require.NoError(t, err)
	assert.Equal(t, CategorySyncshell, c)

	_, err = ParseCategory("housing")
	assert.Error(t, err)
}
