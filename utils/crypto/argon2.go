package cryptopackage

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Argon2id 参数
const (
	argon2Memory      uint32 = 64 * 1024 // KiB
	argon2Iterations  uint32 = 3
	argon2Parallelism uint8  = 4
	argon2SaltLength  uint32 = 16
	argon2KeyLength   uint32 = 32
)

// GenerateFromPassword 使用 Argon2id 哈希密码，结果自带全部参数
func GenerateFromPassword(password string) (string, error) {
	salt := make([]byte, argon2SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	hash := argon2.IDKey([]byte(password), salt, argon2Iterations, argon2Memory, argon2Parallelism, argon2KeyLength)

	b64Salt := base64.RawStdEncoding.EncodeToString(salt)
	b64Hash := base64.RawStdEncoding.EncodeToString(hash)

	// $argon2id$v={version}$m={memory},t={iterations},p={parallelism}${salt}${hash}
	encodedHash := fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, argon2Memory, argon2Iterations, argon2Parallelism, b64Salt, b64Hash)

	return encodedHash, nil
}

// ComparePasswordAndHash 比较明文密码和 Argon2id 哈希值
func ComparePasswordAndHash(password, encodedHash string) (bool, error) {
	parts := strings.Split(encodedHash, "$")

	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return false, errors.New("invalid Argon2id hash format: incorrect number of parts or missing prefix")
	}

	var version int
	_, err := fmt.Sscanf(parts[2], "v=%d", &version)
	if err != nil {
		return false, fmt.Errorf("invalid Argon2id version format: %w", err)
	}
	if version != argon2.Version {
		return false, fmt.Errorf("incompatible Argon2id version: %d", version)
	}

	var memory, iterations, parallelism uint32
	_, err = fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &parallelism)
	if err != nil {
		return false, fmt.Errorf("invalid Argon2id cost parameters format: %w", err)
	}

	decodedSalt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false, fmt.Errorf("failed to decode salt: %w", err)
	}
	decodedHash, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false, fmt.Errorf("failed to decode hash: %w", err)
	}

	// 沿用存储哈希的长度
	computedHash := argon2.IDKey([]byte(password), decodedSalt, iterations, memory, uint8(parallelism), uint32(len(decodedHash)))

	if subtle.ConstantTimeCompare(decodedHash, computedHash) == 1 {
		return true, nil
	}
	return false, nil
}
