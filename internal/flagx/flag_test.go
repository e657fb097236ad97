package flagx

import (
	"os"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterArgs(t *testing.T) {
	tests := []struct {
		name         string
		args         []string
		allowedFlags []string
		want         []string
	}{
		{
			name:         "separate value",
			args:         []string{"-d", "postgres://x", "-a", ":8080"},
			allowedFlags: []string{"-d"},
			want:         []string{"-d", "postgres://x"},
		},
		{
			name:         "equals form",
			args:         []string{"--config=alt.json", "-a", ":8080"},
			allowedFlags: []string{"-c", "--config"},
			want:         []string{"--config=alt.json"},
		},
		{
			name:         "unknown flags ignored",
			args:         []string{"-x", "1", "--y=2", "positional"},
			allowedFlags: []string{"-c"},
			want:         []string{},
		},
		{
			name:         "trailing flag without value",
			args:         []string{"-c"},
			allowedFlags: []string{"-c"},
			want:         []string{"-c"},
		},
		{
			name:         "next dash token is not a value",
			args:         []string{"-c", "-notvalue"},
			allowedFlags: []string{"-c"},
			want:         []string{"-c"},
		},
		{
			name:         "order and repetition preserved",
			args:         []string{"-s", "one", "-t", "15", "-s", "two"},
			allowedFlags: []string{"-s", "-t"},
			want:         []string{"-s", "one", "-t", "15", "-s", "two"},
		},
		{
			name:         "empty args",
			args:         []string{},
			allowedFlags: []string{"-c"},
			want:         []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FilterArgs(tt.args, tt.allowedFlags)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("FilterArgs() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestJsonConfigFlags(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	t.Run("short", func(t *testing.T) {
		os.Args = []string{"testbin", "-c", "/etc/auth.json"}
		assert.Equal(t, "/etc/auth.json", JsonConfigFlags())
	})

	t.Run("long", func(t *testing.T) {
		os.Args = []string{"testbin", "-d", "dsn", "-config", "/etc/long.json"}
		assert.Equal(t, "/etc/long.json", JsonConfigFlags())
	})

	t.Run("absent", func(t *testing.T) {
		os.Args = []string{"testbin", "-x", "1"}
		assert.Empty(t, JsonConfigFlags())
	})

	t.Run("last wins", func(t *testing.T) {
		os.Args = []string{"testbin", "-c", "/1.json", "-config", "/2.json"}
		assert.Equal(t, "/2.json", JsonConfigFlags())
	})
}

func TestEnvFileFlags(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	os.Args = []string{"testbin", "-env-file", "deploy/.env", "-c", "x.json"}
	assert.Equal(t, "deploy/.env", EnvFileFlags())

	os.Args = []string{"testbin"}
	assert.Empty(t, EnvFileFlags())
}

func TestPositional(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want []string
	}{
		{"none", nil, []string{}},
		{"command only", []string{"migrate"}, []string{"migrate"}},
		{"flags first", []string{"-d", "dsn", "-l=debug", "activate", "a@x.io"}, []string{"activate", "a@x.io"}},
		{"flags between", []string{"register", "-c", "cfg.json", "a@x.io"}, []string{"register", "a@x.io"}},
		{"terminator", []string{"-d", "dsn", "--", "register", "-weird@x.io"}, []string{"register", "-weird@x.io"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Positional(tt.args))
		})
	}
}
