package gate

import (
	"context"
	"strings"
	"unicode"

	"github.com/samber/lo"
)

// minPhoneDigits is the digit count a phone number must exceed to be
// treated as an identifier; a bare country code does not qualify
const minPhoneDigits = 5

// CustomerBanResult is the checkout-time ban verdict.
type CustomerBanResult struct {
	Banned  bool   `json:"banned"`
	Message string `json:"message,omitempty"`
}

// CheckCustomerBan matches the email and phone against the customer ban
// list. Lookup failures count as not banned.
func (s *Service) CheckCustomerBan(ctx context.Context, email, phone string) CustomerBanResult {
	identifiers := customerIdentifiers(email, phone)
	if len(identifiers) == 0 {
		return CustomerBanResult{Banned: false}
	}

	banned, err := s.bans.MatchCustomer(ctx, identifiers)
	if err != nil {
		s.logger.WithCaller().Error("Customer ban lookup failed", s.logger.Args("error", err))
		return CustomerBanResult{Banned: false}
	}
	if !banned {
		return CustomerBanResult{Banned: false}
	}

	s.logger.Info("Banned customer attempted checkout")
	return CustomerBanResult{Banned: true, Message: s.customerMessage(ctx)}
}

func customerIdentifiers(email, phone string) []string {
	var out []string
	if email = strings.TrimSpace(email); email != "" {
		out = append(out, email)
	}
	phone = strings.TrimSpace(phone)
	digits := lo.CountBy([]rune(phone), unicode.IsDigit)
	if digits > minPhoneDigits {
		out = append(out, phone)
	}
	return out
}
