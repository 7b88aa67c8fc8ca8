package version

import (
	"fmt"
	"log"
)

var (
	Name        = "palisade"
	Description = "Semantic firewall proxy for LLM backends"
	Version     = "v0.1.0"
	Commit      = "none"
	Date        = "nowish"
)

func PrintVersionInfo(vlog *log.Logger) {
	vlog.Println(fmt.Sprintf("%s %s (%s, built %s)", Name, Version, Commit, Date))
	vlog.Println(Description)
}
