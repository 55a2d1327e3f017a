// Package main implements the pppctl CLI tool.
// It bootstraps the cloud app and deploys services into the operator's database.
package main

import "github.com/ppp/pppctl/cmd/pppctl/cmd"

func main() {
	cmd.Execute()
}
