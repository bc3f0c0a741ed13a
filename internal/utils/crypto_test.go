package utils

import (
	"bytes"
	"strings"
	"testing"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	SetEncryptionKeyForTests(bytes.Repeat([]byte{0x42}, 32))

	original := "acct_1PaYoUtDeStInAtIoN"
	encrypted, err := EncryptPayoutDestination(original)
	if err != nil {
		t.Fatalf("EncryptPayoutDestination: %v", err)
	}
	if encrypted == original {
		t.Fatal("шифротекст совпадает с исходным текстом")
	}

	decrypted, err := DecryptPayoutDestination(encrypted)
	if err != nil {
		t.Fatalf("DecryptPayoutDestination: %v", err)
	}
	if decrypted != original {
		t.Errorf("после расшифровки ожидалось %q, получено %q", original, decrypted)
	}
}

func TestEncryptProducesUniqueCiphertexts(t *testing.T) {
	SetEncryptionKeyForTests(bytes.Repeat([]byte{0x42}, 32))

	a, err := EncryptPayoutDestination("acct_1")
	if err != nil {
		t.Fatalf("EncryptPayoutDestination: %v", err)
	}
	b, err := EncryptPayoutDestination("acct_1")
	if err != nil {
		t.Fatalf("EncryptPayoutDestination: %v", err)
	}
	if a == b {
		t.Error("nonce не рандомизирует шифротекст")
	}
}

func TestDecryptTamperedCiphertextFails(t *testing.T) {
	SetEncryptionKeyForTests(bytes.Repeat([]byte{0x42}, 32))

	encrypted, err := EncryptPayoutDestination("acct_1")
	if err != nil {
		t.Fatalf("EncryptPayoutDestination: %v", err)
	}

	// Портим последний hex-символ.
	last := encrypted[len(encrypted)-1]
	replacement := "0"
	if last == '0' {
		replacement = "1"
	}
	tampered := encrypted[:len(encrypted)-1] + replacement

	if _, err := DecryptPayoutDestination(tampered); err == nil {
		t.Fatal("расшифровка испорченных данных должна падать")
	}
}

func TestDecryptWithUninitializedKeyFails(t *testing.T) {
	SetEncryptionKeyForTests(nil)
	defer SetEncryptionKeyForTests(bytes.Repeat([]byte{0x42}, 32))

	if _, err := EncryptPayoutDestination("acct_1"); err == nil || !strings.Contains(err.Error(), "не инициализирован") {
		t.Fatalf("ожидалась ошибка неинициализированного ключа, получено %v", err)
	}
}
