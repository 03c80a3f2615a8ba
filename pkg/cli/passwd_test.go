package cli_test

import (
	"context"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/seiyo-lab/kaoban/pkg/cli"
)

func TestRun_PasswdCommand(t *testing.T) {
	err := cli.Run(context.Background(), []string{
		"kaoban", "passwd", "--password", "open sesame", "--cost", "4",
	}, "test")
	gt.NoError(t, err)
}

func TestRun_PasswdCommand_InvalidCost(t *testing.T) {
	err := cli.Run(context.Background(), []string{
		"kaoban", "passwd", "--password", "open sesame", "--cost", "99",
	}, "test")
	gt.Error(t, err)
}
