package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/enzononato/benefit-hub-pro/internal/db"
	"github.com/enzononato/benefit-hub-pro/internal/repo"
	"github.com/enzononato/benefit-hub-pro/internal/service"
)

// seedadmin cria a primeira conta admin do painel. Idempotente: se o
// e-mail já existe, apenas informa e sai sem erro.
func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})

	_ = godotenv.Load()

	fs := flag.NewFlagSet("seedadmin", flag.ExitOnError)
	nome := fs.String("nome", "Administrador", "nome da conta")
	email := fs.String("email", "", "e-mail da conta admin")
	senha := fs.String("senha", "", "senha inicial")
	_ = fs.Parse(os.Args[1:])

	if strings.TrimSpace(*email) == "" || strings.TrimSpace(*senha) == "" {
		fmt.Fprintln(os.Stderr, "uso: seedadmin --email admin@empresa.com --senha segredo [--nome \"Administrador\"]")
		os.Exit(1)
	}

	ctx := context.Background()

	dsn := strings.TrimSpace(os.Getenv("DB_DSN"))
	if dsn == "" {
		dsn = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	}
	if dsn == "" {
		log.Fatal().Msg("defina DB_DSN ou DATABASE_URL")
	}

	pool, err := db.NewPool(ctx, dsn)
	if err != nil {
		log.Fatal().Err(err).Msg("não foi possível conectar ao banco")
	}
	defer pool.Close()

	users := service.NewUserService(repo.New(pool))

	user, err := users.CreateUser(ctx, *nome, *email, "admin", *senha)
	if err != nil {
		if errors.Is(err, repo.ErrEmailTaken) {
			log.Info().Str("email", *email).Msg("conta admin já existe")
			return
		}
		log.Fatal().Err(err).Msg("falha ao criar conta admin")
	}

	log.Info().Str("id", user.ID.String()).Str("email", user.Email).Msg("conta admin criada")
}
