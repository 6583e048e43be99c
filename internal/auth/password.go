package auth

import "github.com/alexedwards/argon2id"

// hashParams fixa os parâmetros do Argon2id. Eles ficam embutidos no
// próprio hash, então podem mudar sem invalidar senhas antigas.
var hashParams = &argon2id.Params{
	Memory:      64 * 1024,
	Iterations:  3,
	Parallelism: 2,
	SaltLength:  16,
	KeyLength:   32,
}

// Hash deriva o hash Argon2id da senha.
func Hash(password string) (string, error) {
	return argon2id.CreateHash(password, hashParams)
}

// Verify compara senha e hash em tempo constante.
func Verify(password, encodedHash string) (bool, error) {
	return argon2id.ComparePasswordAndHash(password, encodedHash)
}
