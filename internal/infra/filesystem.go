package infra

import (
	"os"
	"path/filepath"

	"github.com/mitchellh/go-homedir"
	log "github.com/sirupsen/logrus"
)

// GetWorkDir resolves the bot's state directory and makes sure it exists.
// An empty base falls back to ~/.modbot.
func GetWorkDir(base string) string {
	if base == "" {
		base = filepath.Join("~", ".modbot")
	}
	workDir, err := homedir.Expand(base)
	if err != nil {
		log.Fatalln(err)
	}
	if err = os.MkdirAll(workDir, os.ModePerm); err != nil {
		log.Fatalln(err)
	}
	return workDir
}
