package main

import (
	"encoding/json"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hivellm/nexus/session"
)

var queryCmd = &cobra.Command{
	Use:   "query [cypher]",
	Short: "execute a single Cypher query against the graph and print the result",
	Args:  cobra.ExactArgs(1),
	Run:   runQuery,
}

func runQuery(cmd *cobra.Command, args []string) {
	dataDir := viper.GetString("data_dir")
	sess, err := openSession(dataDir)
	if err != nil {
		logrus.Fatal(err)
	}

	result, err := sess.Execute(args[0], nil)
	if err != nil {
		resp := session.ToErrorResponse(err)
		fmt.Printf("error [%s]: %s\n", resp.Code, resp.Message)
		return
	}

	rows := make([][]interface{}, len(result.Rows))
	for i, row := range result.Rows {
		rows[i] = session.SerializeRow(sess.Catalog, sess.Store, row)
	}
	out, _ := json.MarshalIndent(struct {
		Columns []string        `json:"columns"`
		Rows    [][]interface{} `json:"rows"`
	}{result.Columns, rows}, "", "  ")
	fmt.Println(string(out))

	fmt.Printf("%s rows in %.2fms\n", humanize.Comma(int64(len(result.Rows))), result.ExecutionTimeMs)

	if err := saveSession(dataDir, sess); err != nil {
		logrus.Error(err)
	}
}
