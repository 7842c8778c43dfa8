package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Credentials — учётные данные одного аккаунта мигратора.
// SessionFile и PeersCacheFile автогенерируются по индексу записи, если не
// заданы явно; Name используется в логах и пер-аккаунтной статистике отчёта.
type Credentials struct {
	Name           string `json:"name,omitempty"`
	APIID          int    `json:"api_id"`
	APIHash        string `json:"api_hash"`
	PhoneNumber    string `json:"phone_number"`
	SessionFile    string `json:"session_file,omitempty"`
	PeersCacheFile string `json:"peers_cache_file,omitempty"`
}

// SingleAccount собирает учётные данные одиночного режима из переменных окружения.
func SingleAccount() Credentials {
	env := Env()
	return Credentials{
		Name:           "account_0",
		APIID:          env.APIID,
		APIHash:        env.APIHash,
		PhoneNumber:    env.PhoneNumber,
		SessionFile:    env.SessionFile,
		PeersCacheFile: env.PeersCacheFile,
	}
}

// LoadAccounts читает файл пула аккаунтов: JSON-массив записей с обязательными
// api_id, api_hash, phone_number. Отсутствующие имена и пути файлов сессии
// и кэша пиров выводятся из порядкового номера записи, чтобы аккаунты не
// затирали данные друг друга. Пустой массив — ошибка: пул должен содержать
// хотя бы один аккаунт.
func LoadAccounts(path string) ([]Credentials, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read accounts file: %w", err)
	}

	var accounts []Credentials
	if err := json.Unmarshal(data, &accounts); err != nil {
		return nil, fmt.Errorf("parse accounts file %s: %w", path, err)
	}
	if len(accounts) == 0 {
		return nil, fmt.Errorf("accounts file %s contains no accounts", path)
	}

	for i := range accounts {
		a := &accounts[i]
		if a.APIID <= 0 {
			return nil, fmt.Errorf("accounts[%d]: api_id must be a positive integer", i)
		}
		if strings.TrimSpace(a.APIHash) == "" {
			return nil, fmt.Errorf("accounts[%d]: api_hash must be set", i)
		}
		if strings.TrimSpace(a.PhoneNumber) == "" {
			return nil, fmt.Errorf("accounts[%d]: phone_number must be set", i)
		}
		if strings.TrimSpace(a.Name) == "" {
			a.Name = fmt.Sprintf("account_%d", i)
		}
		if strings.TrimSpace(a.SessionFile) == "" {
			a.SessionFile = fmt.Sprintf("data/session_%d.bin", i)
		}
		if strings.TrimSpace(a.PeersCacheFile) == "" {
			a.PeersCacheFile = fmt.Sprintf("data/peers_cache_%d.bbolt", i)
		}
	}
	return accounts, nil
}
