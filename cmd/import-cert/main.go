// import-cert is a one-shot utility that imports a base64-encoded
// certificate into the local machine store. It is the small companion
// to vsts-install for images that must trust an on-premises service
// certificate before the agent first connects.
package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/buildforge/vstsinstall/internal/certstore"
	"github.com/buildforge/vstsinstall/internal/runner"
)

var (
	flagCert     = flag.String("cert", "", "Base64-encoded certificate (or PFX) blob")
	flagPassword = flag.String("password", "", "PFX password (presence switches to PFX import)")
	flagStore    = flag.String("store", certstore.DefaultStore, "Target machine store for plain certificates")
)

func main() {
	flag.Parse()
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	if *flagCert == "" {
		log.Printf("ERROR: -cert is required")
		os.Exit(-1)
	}

	im := &certstore.Importer{Runner: runner.ExecRunner{}}
	if err := im.ImportBase64(context.Background(), *flagCert, *flagPassword, *flagStore); err != nil {
		log.Printf("ERROR: %v", err)
		os.Exit(-1)
	}
	log.Println("Certificate imported")
}
