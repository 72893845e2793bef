package extract

import "testing"

func TestContextDetector_IsFinancial(t *testing.T) {
	d := NewContextDetector()

	tests := []struct {
		name string
		text string
		want bool
	}{
		{
			name: "debit keyword",
			text: "Your account has been debited",
			want: true,
		},
		{
			name: "credit keyword",
			text: "Salary credited successfully",
			want: true,
		},
		{
			name: "amount indicator only",
			text: "Offer worth Rs. 500 inside",
			want: true,
		},
		{
			name: "account indicator only",
			text: "Update KYC for your a/c today",
			want: true,
		},
		{
			name: "no keywords",
			text: "Hello, are we still meeting tomorrow evening?",
			want: false,
		},
		{
			name: "empty text",
			text: "",
			want: false,
		},
		{
			name: "whitespace only",
			text: "   \t\n ",
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := d.IsFinancial(tt.text); got != tt.want {
				t.Errorf("IsFinancial(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestContextDetector_Score(t *testing.T) {
	d := NewContextDetector()

	tests := []struct {
		name string
		text string
		want float64
	}{
		{
			name: "no category",
			text: "see you at the gym",
			want: 0,
		},
		{
			name: "one category",
			text: "amount pending",
			want: 0.25,
		},
		{
			name: "three categories",
			text: "Rs. 500 credited to your a/c",
			want: 0.75,
		},
		{
			name: "all four categories",
			text: "Rs 500 debited from a/c XX12 and 200 received",
			want: 1.0,
		},
		{
			name: "empty",
			text: "",
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := d.Score(tt.text); got != tt.want {
				t.Errorf("Score(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}
