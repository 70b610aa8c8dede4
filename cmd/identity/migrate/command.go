package migrate

import (
	"github.com/spf13/cobra"

	"github.com/openshop/identity/internal/business"
	"github.com/openshop/identity/internal/cmdutils"
)

func Cmd(buildInfo string) *cobra.Command {
	return cmdutils.CobraCommand(
		"migrate",
		"Identity database migrations",
		"Applies the auth state and user directory schema to the configured database",
		buildInfo,
		cmdutils.RunAsJob,
		business.MigrateMain,
	)
}
