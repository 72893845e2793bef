package extract

import (
	"reflect"
	"testing"
)

func TestExtractPrimaryAccount(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{
			name: "anchored after account",
			text: "Your account XXXXXX1234 has been debited with Rs.1,500.00",
			want: "xxxxxx1234",
		},
		{
			name: "anchored with no dot",
			text: "A/c no. XX9876 debited for Rs 100",
			want: "xx9876",
		},
		{
			name: "acct marker",
			text: "acct 445566778 credited",
			want: "445566778",
		},
		{
			name: "masked stars",
			text: "card-free alert ignored; **3456 got 500",
			want: "xx3456",
		},
		{
			name: "ending digits",
			text: "deposit to a/c ending 5678 done",
			want: "5678",
		},
		{
			name: "bare digit run",
			text: "1234567890 credited with salary",
			want: "1234567890",
		},
		{
			name: "mask with separator",
			text: "a/c XXXX-4321 debited",
			want: "xxxx4321",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractPrimaryAccount(tt.text)
			if !ok {
				t.Fatalf("ExtractPrimaryAccount(%q) found nothing", tt.text)
			}
			if got != tt.want {
				t.Errorf("ExtractPrimaryAccount(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}

func TestExtractPrimaryAccount_NoMatch(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{
			name: "empty",
			text: "",
		},
		{
			name: "nothing account-like",
			text: "see you tomorrow at five",
		},
		{
			name: "digit run near card",
			text: "spent using card 4111111187654321 today",
		},
		{
			name: "repeated digit run",
			text: "a/c 0000000000 frozen",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got, ok := ExtractPrimaryAccount(tt.text); ok {
				t.Errorf("ExtractPrimaryAccount(%q) = %q, want none", tt.text, got)
			}
		})
	}
}

func TestExtractPrimaryAccount_KeywordPreference(t *testing.T) {
	// The identifier anchored to "account no" wins over the earlier run.
	text := "ref 1234567800 deposited to account no 8765432100"
	got, ok := ExtractPrimaryAccount(text)
	if !ok {
		t.Fatal("expected a match")
	}
	if got != "8765432100" {
		t.Errorf("got %q, want %q (candidate after keyword preferred)", got, "8765432100")
	}

	// Two bare runs, keyword at the end: the textually nearest run wins.
	text = "balance for 11223344 and 55667788, account closed"
	got, ok = ExtractPrimaryAccount(text)
	if !ok {
		t.Fatal("expected a match")
	}
	if got != "55667788" {
		t.Errorf("got %q, want %q (nearest to keyword preferred)", got, "55667788")
	}
}

func TestExtractAllAccounts(t *testing.T) {
	text := "moved from a/c XX1111 to account XX2222, again a/c XX1111"
	got := ExtractAllAccounts(text)
	want := []string{"xx1111", "xx2222"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ExtractAllAccounts(%q) = %v, want %v", text, got, want)
	}

	if got := ExtractAllAccounts("nothing here"); got != nil {
		t.Errorf("ExtractAllAccounts(no match) = %v, want nil", got)
	}
}

func TestNormalizeAccountRef(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"XXXXXX1234", "xxxxxx1234"},
		{"**34 56", "xx3456"},
		{"XX-98-76", "xx9876"},
		{"123", ""},     // too short after normalization
		{"7777777", ""}, // single repeated digit
		{"holder", ""},  // no digits
		{"xx", ""},
	}

	for _, tt := range tests {
		if got := normalizeAccountRef(tt.raw); got != tt.want {
			t.Errorf("normalizeAccountRef(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}
