// Command nexusd runs the Nexus graph engine as a standalone process: it
// loads (or creates) a bbolt-backed graph, optionally mirrors the catalog to
// Postgres for auditing, and serves Cypher queries over HTTP. It also
// supports a one-shot "query" subcommand for scripting, following the
// teacher's cli package's pattern of a cobra root command plus subcommands
// wired through Viper-bound flags.
package main

import (
	"log"
	"os"
)

func main() {
	if err := RootCmd.Execute(); err != nil {
		log.Println(err)
		os.Exit(1)
	}
}
