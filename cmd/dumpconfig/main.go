// Command dumpconfig loads the effective configuration and prints it as
// JSON with secrets redacted. Useful for checking what a deployment will
// actually run with after env overrides are applied.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/ncecere/chatstore/backend/internal/config"
)

const redacted = "<redacted>"

func main() {
	configFile := flag.String("config", "", "path to config file (optional)")
	flag.Parse()

	cfg, err := config.Load(config.Options{ConfigFile: *configFile})
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	out := *cfg
	if out.Database.URL != "" {
		out.Database.URL = redacted
	}
	if out.Redis.URL != "" {
		out.Redis.URL = redacted
	}
	if out.Admin.KeyHash != "" {
		out.Admin.KeyHash = redacted
	}
	if out.Admin.JWTSecret != "" {
		out.Admin.JWTSecret = redacted
	}
	if out.Archive.EncryptionKey != "" {
		out.Archive.EncryptionKey = redacted
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		log.Fatalf("encode config: %v", err)
	}
	fmt.Fprintln(os.Stdout, string(data))
}
