package extract

import "testing"

func TestScanContent(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			"simple Tj",
			"BT /F1 12 Tf 72 712 Td (Hello World) Tj ET",
			"Hello World\n",
		},
		{
			"TJ with kerning",
			"BT [(Hel) 20 (lo) -350 (World)] TJ ET",
			"Hello World\n",
		},
		{
			"T* and quote operators",
			"BT (first) Tj T* (second) Tj (third) ' 1 2 (fourth) \" ET",
			"first\nsecond\nthird\nfourth\n",
		},
		{
			"Td vertical move starts a line",
			"BT (a) Tj 0 -14 Td (b) Tj 10 0 Td (c) Tj ET",
			"a\nb c\n",
		},
		{
			"escapes and nested parens",
			`BT (paren \(x\) and (nested) and \\ and \101) Tj ET`,
			`paren (x) and (nested) and \ and A` + "\n",
		},
		{
			"hex string",
			"BT <48656C6C6F> Tj ET",
			"Hello\n",
		},
		{
			"utf16 hex string",
			"BT <FEFF00E9007400E9> Tj ET",
			"été\n",
		},
		{
			"comments and dictionaries ignored",
			"% comment (ignored) Tj\n/Span << /MCID 0 /Alt (skip) >> BDC BT (kept) Tj ET EMC",
			"kept\n",
		},
		{
			"inline image skipped",
			"BI /W 1 /H 1 /BPC 8 /CS /G ID \x00(\xff) EI BT (after) Tj ET",
			"after\n",
		},
		{
			"graphics only",
			"q 1 0 0 1 0 0 cm 0 0 100 100 re f Q",
			"",
		},
		{
			"truncated string",
			"BT (unterminated",
			"",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := scanContent([]byte(tt.content)); got != tt.want {
				t.Errorf("scanContent() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDecodePDFStringDropsControls(t *testing.T) {
	if got := decodePDFString([]byte("a\x01b\tc")); got != "ab\tc" {
		t.Errorf("decodePDFString = %q", got)
	}
}
