package codec

import (
	"errors"
	"strings"
	"testing"
	"time"

	"pracstore/internal/store"
)

type note struct {
	store.Meta
	Text string   `json:"text"`
	Tags []string `json:"tags"`
}

func TestSerializeDeserialize(t *testing.T) {
	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	in := &note{Text: "hello", Tags: []string{"a", "b"}}
	in.ID = 7
	in.CreatedUtc = created
	in.UpdatedUtc = created.Add(time.Minute)

	data, err := Serialize(in)
	if err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{`"id": 7`, `"createdUtc"`, `"updatedUtc"`, `"text": "hello"`} {
		if !strings.Contains(string(data), key) {
			t.Fatalf("encoded document missing %s:\n%s", key, data)
		}
	}

	out, err := Deserialize[*note](data)
	if err != nil {
		t.Fatal(err)
	}
	if out.ID != 7 || out.Text != "hello" || len(out.Tags) != 2 {
		t.Fatalf("unexpected decode: %+v", out)
	}
	if !out.CreatedUtc.Equal(created) {
		t.Fatalf("CreatedUtc = %v, want %v", out.CreatedUtc, created)
	}
}

func TestDeserializeRejectsBadInput(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"blank", "  \n\t "},
		{"null", "null"},
		{"truncated", `{"id": 1, "text": `},
		{"wrong type", `{"id": "one"}`},
		{"not json", "id=1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Deserialize[*note]([]byte(tt.input))
			if !errors.Is(err, store.ErrEncoding) {
				t.Fatalf("expected ErrEncoding, got %v", err)
			}
		})
	}
}

func TestSerializeNil(t *testing.T) {
	var n *note
	if _, err := Serialize(n); !errors.Is(err, store.ErrEncoding) {
		t.Fatalf("expected ErrEncoding for nil, got %v", err)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	in := &note{Text: "orig", Tags: []string{"x"}}
	cp, err := Clone(in)
	if err != nil {
		t.Fatal(err)
	}
	cp.Text = "changed"
	cp.Tags[0] = "y"
	if in.Text != "orig" || in.Tags[0] != "x" {
		t.Fatal("clone shares state with the original")
	}
}
