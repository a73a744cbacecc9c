package domain

import "strings"

// NormalizePhone canonicalizes a Kenyan mobile-money number to 2547XXXXXXXX
// / 2541XXXXXXXX form. Accepts 07…, 01…, +254… and 254… inputs.
func NormalizePhone(raw string) (string, error) {
	phone := strings.TrimSpace(raw)
	phone = strings.TrimPrefix(phone, "+")
	phone = strings.ReplaceAll(phone, " ", "")

	switch {
	case strings.HasPrefix(phone, "254"):
	case strings.HasPrefix(phone, "0") && len(phone) == 10:
		phone = "254" + phone[1:]
	default:
		return "", ErrInvalidPhone
	}

	if len(phone) != 12 {
		return "", ErrInvalidPhone
	}
	for _, r := range phone {
		if r < '0' || r > '9' {
			return "", ErrInvalidPhone
		}
	}
	if phone[3] != '7' && phone[3] != '1' {
		return "", ErrInvalidPhone
	}
	return phone, nil
}
