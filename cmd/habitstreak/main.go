// Command habitstreak は習慣トラッカーのAPIサーバー、ワーカー、マイグレーションを起動する。
//
//	habitstreak [serve|worker|migrate|healthcheck]
package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/habitstreak/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "habitstreak: %v\n", err)
		os.Exit(1)
	}
}
