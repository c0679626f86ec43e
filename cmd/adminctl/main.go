// Command adminctl prepares admin credentials for the API.
//
//	adminctl hash            print a bcrypt hash for ADMIN_PASSWORD_HASH
//	adminctl seed -user NAME  upsert an account into the admin_users table
//
// The password is read from ADMIN_PASSWORD or, when unset, from stdin.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"PuertoComercio/internal/auth"
	"PuertoComercio/pkg/kit"
)

func main() {
	_ = godotenv.Load(getenv("ENV_FILE", ".env"))

	log := kit.NewLogger("adminctl", kit.LogOptions{Level: getenv("LOG_LEVEL", "info")})
	defer func() { _ = log.Sync() }()

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch cmd, args := os.Args[1], os.Args[2:]; cmd {
	case "hash":
		err = runHash(os.Stdin, os.Stdout)
	case "seed":
		err = runSeed(context.Background(), args, os.Stdin, log)
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatal("adminctl failed", zap.Error(err))
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: adminctl hash | adminctl seed [-user name] [-dsn url]")
}

func runHash(in io.Reader, out io.Writer) error {
	pass, err := readPassword(in)
	if err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(pass), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, string(hash))
	return err
}

func runSeed(ctx context.Context, args []string, in io.Reader, log *zap.Logger) error {
	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	user := fs.String("user", getenv("ADMIN_USERNAME", "admin"), "account name")
	dsn := fs.String("dsn", os.Getenv("DATABASE_URL"), "postgres connection string")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *dsn == "" {
		return errors.New("DATABASE_URL or -dsn is required")
	}

	pass, err := readPassword(in)
	if err != nil {
		return err
	}

	db, err := kit.OpenPostgres(ctx, *dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	creds := auth.NewPostgresCredentials(db)
	if err := creds.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	if err := creds.Upsert(ctx, *user, pass); err != nil {
		return fmt.Errorf("upsert %s: %w", *user, err)
	}

	log.Info("admin account saved", zap.String("username", *user))
	return nil
}

func readPassword(in io.Reader) (string, error) {
	if p := os.Getenv("ADMIN_PASSWORD"); p != "" {
		return p, nil
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	if p := strings.TrimRight(line, "\r\n"); p != "" {
		return p, nil
	}
	return "", errors.New("empty password")
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
