package email

import (
	"net/mail"
	"strings"
)

// ParseAddress parses a single RFC 5322 address such as
// "Alice <alice@example.com>".
func ParseAddress(raw string) (Address, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(raw))
	if err != nil {
		return Address{}, err
	}
	return Address{Address: addr.Address, Name: addr.Name}, nil
}

// ParseAddressList splits a comma-separated address list into individual
// addresses. When RFC 5322 parsing fails it falls back to a plain comma
// split, keeping each trimmed part as a bare address.
func ParseAddressList(raw string) []Address {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	addresses, err := mail.ParseAddressList(raw)
	if err != nil {
		parts := strings.Split(raw, ",")
		result := make([]Address, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, Address{Address: trimmed})
			}
		}
		return result
	}

	result := make([]Address, 0, len(addresses))
	for _, addr := range addresses {
		result = append(result, Address{Address: addr.Address, Name: addr.Name})
	}
	return result
}
