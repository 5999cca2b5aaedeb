// Package document validates and formats Brazilian taxpayer documents:
// CPF for individuals and CNPJ for companies.
package document

import (
	"errors"
	"strings"
)

type Type string

const (
	CPF  Type = "CPF"
	CNPJ Type = "CNPJ"
)

const (
	cpfLen  = 11
	cnpjLen = 14
)

var ErrInvalid = errors.New("invalid document")

// Digits strips everything but ASCII digits.
func Digits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Detect returns the document type of a valid CPF or CNPJ, with or without mask.
func Detect(s string) (Type, bool) {
	d := Digits(s)
	switch {
	case len(d) == cpfLen && validCPF(d):
		return CPF, true
	case len(d) == cnpjLen && validCNPJ(d):
		return CNPJ, true
	}
	return "", false
}

func IsValid(s string) bool {
	_, ok := Detect(s)
	return ok
}

// Format validates s and returns it with the canonical mask
// (000.000.000-00 or 00.000.000/0000-00).
func Format(s string) (string, error) {
	t, ok := Detect(s)
	if !ok {
		return "", ErrInvalid
	}

	d := Digits(s)
	if t == CPF {
		return d[0:3] + "." + d[3:6] + "." + d[6:9] + "-" + d[9:11], nil
	}
	return d[0:2] + "." + d[2:5] + "." + d[5:8] + "/" + d[8:12] + "-" + d[12:14], nil
}

func validCPF(d string) bool {
	if repeated(d) {
		return false
	}
	return checkDigit(d[:9], 10) == d[9] && checkDigit(d[:10], 11) == d[10]
}

// checkDigit computes a CPF verifier digit with descending weights from w.
func checkDigit(d string, w int) byte {
	sum := 0
	for i := 0; i < len(d); i++ {
		sum += int(d[i]-'0') * (w - i)
	}
	r := (sum * 10) % 11
	if r == 10 {
		r = 0
	}
	return byte('0' + r)
}

var (
	cnpjWeights1 = []int{5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
	cnpjWeights2 = []int{6, 5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
)

func validCNPJ(d string) bool {
	if repeated(d) {
		return false
	}
	return cnpjDigit(d[:12], cnpjWeights1) == d[12] && cnpjDigit(d[:13], cnpjWeights2) == d[13]
}

func cnpjDigit(d string, weights []int) byte {
	sum := 0
	for i := 0; i < len(d); i++ {
		sum += int(d[i]-'0') * weights[i]
	}
	r := sum % 11
	if r < 2 {
		return '0'
	}
	return byte('0' + 11 - r)
}

func repeated(d string) bool {
	return strings.Count(d, d[:1]) == len(d)
}
