package password

import "golang.org/x/crypto/bcrypt"

// hashBcrypt produces legacy-format hashes for verify tests.
func hashBcrypt(password string, cost int) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
