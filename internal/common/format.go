package common

import (
	"fmt"
	"strings"

	"streamprime-wallet-go/internal/models"

	"github.com/shopspring/decimal"
)

const (
	// Default separator widths
	DefaultWidth = 80
	WideWidth    = 100
)

// PrintSeparator prints a separator line with the specified character and width
func PrintSeparator(char string, width int) {
	fmt.Println(strings.Repeat(char, width))
}

// PrintHeader prints a formatted header with title and separators
func PrintHeader(title string, width int) {
	fmt.Println("\n" + strings.Repeat("=", width))
	fmt.Println(title)
	PrintSeparator("=", width)
}

// PrintFooter prints a formatted footer with message and separators
func PrintFooter(message string, width int) {
	fmt.Println("\n" + strings.Repeat("=", width))
	fmt.Println(message)
	fmt.Println(strings.Repeat("=", width) + "\n")
}

// BoxPrefix returns the box-drawing prefix for list items
func BoxPrefix(isLast bool) string {
	if isLast {
		return "└  "
	}
	return "│  "
}

// FormatAmount renders an amount with exactly two decimals and the currency code, e.g. "150.00 INR"
func FormatAmount(amount decimal.Decimal) string {
	return amount.StringFixed(models.MinorDigits) + " " + models.Currency
}

// FormatSigned renders a signed amount with an explicit + for credits
func FormatSigned(amount decimal.Decimal) string {
	if amount.IsPositive() {
		return "+" + amount.StringFixed(models.MinorDigits)
	}
	return amount.StringFixed(models.MinorDigits)
}

// AccountLabel names an account for reports, falling back to its phone
func AccountLabel(account models.Account) string {
	if account.Name != "" {
		return fmt.Sprintf("%s (%s)", account.Name, account.Phone)
	}
	return account.Phone
}
