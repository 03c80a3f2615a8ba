package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
	"golang.org/x/crypto/bcrypt"
)

func cmdPasswd() *cli.Command {
	var password string
	var cost int

	return &cli.Command{
		Name:  "passwd",
		Usage: "Generate a bcrypt password hash for an operator account in the policy file",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "password",
				Usage:       "Password to hash (read from stdin when omitted, which keeps it out of the shell history)",
				Destination: &password,
			},
			&cli.IntFlag{
				Name:        "cost",
				Usage:       "bcrypt cost factor",
				Value:       bcrypt.DefaultCost,
				Destination: &cost,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			if password == "" {
				fmt.Fprint(os.Stderr, "Password: ")
				line, err := bufio.NewReader(os.Stdin).ReadString('\n')
				if err != nil {
					return goerr.Wrap(err, "failed to read password from stdin")
				}
				password = strings.TrimRight(line, "\r\n")
			}
			if password == "" {
				return goerr.New("password must not be empty")
			}

			hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
			if err != nil {
				return goerr.Wrap(err, "failed to hash password")
			}

			fmt.Println(string(hash))
			return nil
		},
	}
}
