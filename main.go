// main.go
package main

import (
	"fmt"

	"github.com/JSPierceColorado/Kraken-Seller/cmd"
)

const banner = `
  ___  __.               __                      _________      .__  .__
 |   |/ _|___________   |  | __ ____   ____    /   _____/ ____ |  | |  |   ___________
 |     < \_  __ \__  \  |  |/ // __ \ /    \   \_____  \_/ __ \|  | |  | _/ __ \_  __ \
 |   |  \ |  | \// __ \_|    <\  ___/|   |  \  /        \  ___/|  |_|  |_\  ___/|  | \/
 |___|__ \|__|  (____  /|__|_ \\___  >___|  / /_______  /\___  >____/____/\___  >__|
        \/           \/      \/    \/     \/          \/     \/               \/

	Sells only, never buys. Stop-loss, arm, trail.
[]=========================================================================[]
`

func main() {
	fmt.Print(banner)
	cmd.Execute()
}
