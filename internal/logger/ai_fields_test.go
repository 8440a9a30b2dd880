package logger

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestFieldHelpers(t *testing.T) {
	tests := []struct {
		name   string
		fields []zap.Field
		expect map[string]string
	}{
		{
			name: "blank entries dropped",
			fields: StringFields(
				StringField{Key: " question ", Value: " Why Acme? "},
				StringField{Key: "answer", Value: "  "},
				StringField{Key: "", Value: "orphan"},
			),
			expect: map[string]string{"question": "Why Acme?"},
		},
		{
			name:   "relay request",
			fields: CommonFields("openai-compatible", " gpt-4o-mini "),
			expect: map[string]string{FieldProvider: "openai-compatible", FieldModel: "gpt-4o-mini"},
		},
		{
			name:   "model unknown",
			fields: CommonFields("gemini", ""),
			expect: map[string]string{FieldProvider: "gemini"},
		},
		{
			name:   "page without field",
			fields: PageFields(" https://jobs.lever.co/acme/1 ", ""),
			expect: map[string]string{FieldURL: "https://jobs.lever.co/acme/1"},
		},
		{
			name:   "page and field",
			fields: PageFields("https://boards.greenhouse.io/acme/jobs/7", "f3"),
			expect: map[string]string{FieldURL: "https://boards.greenhouse.io/acme/jobs/7", FieldField: "f3"},
		},
		{
			name:   "nothing set",
			fields: PageFields("", ""),
			expect: map[string]string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if len(tt.fields) != len(tt.expect) {
				t.Fatalf("expected %d fields, got %+v", len(tt.expect), tt.fields)
			}
			for _, f := range tt.fields {
				if want, ok := tt.expect[f.Key]; !ok || f.String != want {
					t.Fatalf("unexpected field %s=%q", f.Key, f.String)
				}
			}
		})
	}
}

func TestWithCommonFieldsAttachesToEveryEntry(t *testing.T) {
	core, observed := observer.New(zapcore.DebugLevel)

	log := WithCommonFields(zap.New(core), "openai-compatible", "gpt-4o-mini")
	log.Debug("completion request")
	log.Info("completion response", zap.Int("answer_length", 42))

	entries := observed.All()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	for _, e := range entries {
		ctx := e.ContextMap()
		if ctx[FieldProvider] != "openai-compatible" || ctx[FieldModel] != "gpt-4o-mini" {
			t.Fatalf("entry %q lost common fields: %v", e.Message, ctx)
		}
	}
}

func TestWithFieldsNilLogger(t *testing.T) {
	for _, log := range []*zap.Logger{
		WithFields(nil, PageFields("https://jobs.lever.co/acme/1", "f1")...),
		WithCommonFields(nil, "gemini", "gemini-2.5-flash"),
		WithFields(nil),
	} {
		if log == nil {
			t.Fatalf("expected a no-op logger")
		}
		log.Info("dropped")
	}
}
