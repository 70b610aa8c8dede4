package apiserver

import (
	"github.com/spf13/cobra"

	"github.com/openshop/identity/internal/business"
	"github.com/openshop/identity/internal/cmdutils"
)

func Cmd(buildInfo string) *cobra.Command {
	return cmdutils.CobraCommand(
		"api-server",
		"Identity API server",
		"Identity API server hosts the public sign-in API backed by the external OpenID provider",
		buildInfo,
		cmdutils.RunAsService,
		business.Main,
	)
}
