package profileaccess

import "sort"

// FilterFields keeps the fields the level may write and returns the dropped
// keys sorted. The input map is not modified.
func FilterFields(level AccessLevel, fields map[string]any) (map[string]any, []string) {
	allowed := make(map[string]any, len(fields))
	var dropped []string
	for key, value := range fields {
		if CanWriteField(level, key) {
			allowed[key] = value
			continue
		}
		dropped = append(dropped, key)
	}
	sort.Strings(dropped)
	return allowed, dropped
}

// CheckPassword rejects a password field in a cross-user update. Self updates
// pass through.
func CheckPassword(req Request, fields map[string]any) error {
	if _, ok := fields[FieldPassword]; ok && !req.IsSelf() {
		return ErrCrossUserPassword
	}
	return nil
}
