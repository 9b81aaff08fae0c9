package backup

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"
	"os"

	"golang.org/x/crypto/pbkdf2"

	"pg-s3-backup/internal/errors"
	"pg-s3-backup/internal/logging"
	"pg-s3-backup/internal/runner"
)

// Encryptor turns a plaintext dump into its .enc counterpart. On failure no
// partial ciphertext may be left behind; the plaintext is never touched (the
// pipeline decides whether to fall back to uploading it).
type Encryptor interface {
	// Encrypt reads srcPath and writes srcPath + ".enc", returning the new path.
	Encrypt(ctx context.Context, srcPath string) (string, error)
}

// OpenSSLEncryptor shells out to "openssl enc", producing the standard salted
// AES-256-CBC format with PBKDF2 key derivation. This is the default mode.
type OpenSSLEncryptor struct {
	runner   runner.Runner
	password string
	logger   *logging.Logger
}

// NewOpenSSLEncryptor creates a command-backed encryptor
func NewOpenSSLEncryptor(r runner.Runner, password string, logger *logging.Logger) *OpenSSLEncryptor {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &OpenSSLEncryptor{runner: r, password: password, logger: logger}
}

// Encrypt runs openssl over the dump. The command carries the passphrase, so
// it is marked sensitive and never logged beyond the executable name.
func (e *OpenSSLEncryptor) Encrypt(ctx context.Context, srcPath string) (string, error) {
	encPath := srcPath + EncryptedSuffix

	command := fmt.Sprintf("openssl enc -aes-256-cbc -pbkdf2 -salt -in %s -out %s -k %s",
		srcPath, encPath, e.password)

	if _, err := e.runner.Run(ctx, command, true); err != nil {
		removePartial(encPath, e.logger)
		return "", errors.NewEncryptionError(fmt.Sprintf("failed to encrypt %s", srcPath), err)
	}
	return encPath, nil
}

// Parameters matching "openssl enc -aes-256-cbc -pbkdf2 -salt" defaults, so
// native output stays decryptable with a stock openssl binary.
const (
	opensslMagic      = "Salted__"
	opensslSaltLen    = 8
	pbkdf2Iterations  = 10000
	aesKeyLen         = 32
	aesBlockSize      = 16
	encryptChunkBytes = 64 * 1024 // multiple of the block size
)

// NativeEncryptor encrypts in-process with an OpenSSL-compatible on-disk
// format: "Salted__" magic, 8-byte salt, then AES-256-CBC ciphertext with
// PKCS#7 padding, key and IV derived via PBKDF2-SHA256.
type NativeEncryptor struct {
	password string
	logger   *logging.Logger
}

// NewNativeEncryptor creates an in-process encryptor
func NewNativeEncryptor(password string, logger *logging.Logger) *NativeEncryptor {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &NativeEncryptor{password: password, logger: logger}
}

// Encrypt streams srcPath into srcPath + ".enc"
func (e *NativeEncryptor) Encrypt(ctx context.Context, srcPath string) (string, error) {
	encPath := srcPath + EncryptedSuffix

	if err := e.encryptFile(ctx, srcPath, encPath); err != nil {
		removePartial(encPath, e.logger)
		return "", errors.NewEncryptionError(fmt.Sprintf("failed to encrypt %s", srcPath), err)
	}
	return encPath, nil
}

func (e *NativeEncryptor) encryptFile(ctx context.Context, srcPath, encPath string) error {
	in, err := os.Open(srcPath)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(encPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer out.Close()

	salt := make([]byte, opensslSaltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return fmt.Errorf("failed to generate salt: %w", err)
	}

	if _, err := out.Write([]byte(opensslMagic)); err != nil {
		return err
	}
	if _, err := out.Write(salt); err != nil {
		return err
	}

	keyIV := pbkdf2.Key([]byte(e.password), salt, pbkdf2Iterations, aesKeyLen+aesBlockSize, sha256.New)
	block, err := aes.NewCipher(keyIV[:aesKeyLen])
	if err != nil {
		return err
	}
	mode := cipher.NewCBCEncrypter(block, keyIV[aesKeyLen:])

	buf := make([]byte, encryptChunkBytes)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, readErr := io.ReadFull(in, buf)
		if readErr == nil {
			mode.CryptBlocks(buf[:n], buf[:n])
			if _, err := out.Write(buf[:n]); err != nil {
				return err
			}
			continue
		}
		if readErr != io.EOF && readErr != io.ErrUnexpectedEOF {
			return readErr
		}

		// Final chunk: PKCS#7 pad to a full block. A zero-length tail
		// still gets one full padding block.
		final := padPKCS7(buf[:n])
		mode.CryptBlocks(final, final)
		if _, err := out.Write(final); err != nil {
			return err
		}
		return out.Sync()
	}
}

// padPKCS7 appends PKCS#7 padding up to the AES block size
func padPKCS7(data []byte) []byte {
	padLen := aesBlockSize - len(data)%aesBlockSize
	padded := make([]byte, len(data)+padLen)
	copy(padded, data)
	for i := len(data); i < len(padded); i++ {
		padded[i] = byte(padLen)
	}
	return padded
}

// removePartial deletes an incomplete ciphertext, logging rather than failing
func removePartial(path string, logger *logging.Logger) {
	if _, err := os.Stat(path); err != nil {
		return
	}
	if err := os.Remove(path); err != nil {
		logger.Warnf("Could not remove incomplete encrypted file %s: %v", path, err)
	}
}
