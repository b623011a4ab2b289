package record

import (
	"testing"
)

func mustDecode(t *testing.T, s string) Record {
	t.Helper()
	r, err := Decode([]byte(s))
	if err != nil {
		t.Fatalf("Decode(%s): %v", s, err)
	}
	return r
}

// TestSelectText covers the field precedence.
//
// Edge cases:
//   - "text" beats "content" regardless of field order.
//   - A null or numeric "text" falls through to the next candidate.
//   - Records without any string field yield nothing.
func TestSelectText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		in        string
		want      string
		wantOK    bool
		wantField string
	}{
		{name: "text", in: `{"text": "a"}`, want: "a", wantOK: true, wantField: "text"},
		{name: "content", in: `{"content": "b"}`, want: "b", wantOK: true, wantField: "content"},
		{name: "text_beats_content_any_order", in: `{"content": "b", "text": "a"}`, want: "a", wantOK: true, wantField: "text"},
		{name: "first_string_field", in: `{"id": 7, "other": "c", "later": "d"}`, want: "c", wantOK: true, wantField: "other"},
		{name: "no_string_field", in: `{"n": 5}`, wantOK: false},
		{name: "empty_record", in: `{}`, wantOK: false},
		{name: "null_text_falls_through", in: `{"text": null, "content": "b"}`, want: "b", wantOK: true, wantField: "content"},
		{name: "numeric_content_falls_to_scan", in: `{"content": 3, "title": "t"}`, want: "t", wantOK: true, wantField: "title"},
		{name: "nested_is_not_string", in: `{"meta": {"text": "x"}, "n": 1}`, wantOK: false},
		{name: "empty_string_is_a_value", in: `{"text": "", "content": "b"}`, want: "", wantOK: true, wantField: "text"},
		{name: "multiline_value_kept", in: `{"text": "l1\nl2"}`, want: "l1\nl2", wantOK: true, wantField: "text"},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			r := mustDecode(t, tc.in)
			got, ok := SelectText(r)
			if ok != tc.wantOK || got != tc.want {
				t.Fatalf("SelectText()=(%q,%v), want (%q,%v)", got, ok, tc.want, tc.wantOK)
			}

			field, ok := SelectedField(r)
			if ok != tc.wantOK || field != tc.wantField {
				t.Fatalf("SelectedField()=(%q,%v), want (%q,%v)", field, ok, tc.wantField, tc.wantOK)
			}
		})
	}
}
