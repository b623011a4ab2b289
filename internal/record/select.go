package record

// TextFields lists the field names checked, in order, before falling back to
// the first string-valued field.
var TextFields = []string{"text", "content"}

// SelectText picks the text value for r.
//
// Precedence:
//  1. each name in TextFields whose value is a string;
//  2. the first field, in record order, whose value is a string.
//
// A named candidate holding a non-string value (null, number, nested) does
// not stop the search. ok is false when r has no string field at all.
func SelectText(r Record) (text string, ok bool) {
	for _, name := range TextFields {
		if v, found := r.Get(name); found {
			if s, isStr := v.Str(); isStr {
				return s, true
			}
		}
	}
	for _, f := range r.fields {
		if s, isStr := f.Value.Str(); isStr {
			return s, true
		}
	}
	return "", false
}

// SelectedField reports which field SelectText would use. It is used by the
// probe command to explain the choice.
func SelectedField(r Record) (name string, ok bool) {
	for _, n := range TextFields {
		if v, found := r.Get(n); found && v.Kind() == KindString {
			return n, true
		}
	}
	for _, f := range r.fields {
		if f.Value.Kind() == KindString {
			return f.Name, true
		}
	}
	return "", false
}
