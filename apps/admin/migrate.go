package main

import (
	"github.com/pressly/goose/v3"

	appfs "github.com/tuyishimwe/umurinzi/fs"
)

var gooseRunFunc = goose.Run // mockable

func (cli *commandLine) migrate(args []string) error {
	command := "up"
	if len(args) > 0 {
		command = args[0]
		args = args[1:]
	}
	goose.SetBaseFS(appfs.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	return gooseRunFunc(command, cli.db, "migrations", args...)
}
