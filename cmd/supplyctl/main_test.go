package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseID(t *testing.T) {
	id, err := parseID("42")
	assert.NoError(t, err)
	assert.Equal(t, int64(42), id)

	for _, raw := range []string{"", "0", "-3", "abc"} {
		_, err := parseID(raw)
		assert.Error(t, err, raw)
	}
}

func TestDispatchRejectsBadArguments(t *testing.T) {
	a := &app{}
	ctx := context.Background()

	cases := []struct {
		command string
		args    []string
	}{
		{"unknown", nil},
		{"migrate", nil},
		{"migrate", []string{"sideways"}},
		{"user", []string{"promote"}},
		{"listing", []string{"approve"}},
		{"match", []string{"list", "1"}},
		{"file", []string{"copy", "1"}},
		{"cleanup", nil},
		{"report", nil},
		{"events", []string{"head"}},
	}

	for _, tc := range cases {
		assert.ErrorIs(t, a.dispatch(ctx, tc.command, tc.args), errUsage, tc.command)
	}
}
