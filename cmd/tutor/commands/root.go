package commands

import (
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/suPer8Hu/ai-tutor/internal/client"
)

// NewRootCmd builds the tutor command tree with its own viper instance.
func NewRootCmd() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("TUTOR")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	root := &cobra.Command{
		Use:           "tutor",
		Short:         "Personal tutor command line client",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			_ = godotenv.Load()
		},
	}
	root.PersistentFlags().String("api-url", "http://localhost:8080", "tutor API base URL (TUTOR_API_URL)")
	root.PersistentFlags().String("token", "", "bearer token (TUTOR_TOKEN)")
	_ = v.BindPFlag("api-url", root.PersistentFlags().Lookup("api-url"))
	_ = v.BindPFlag("token", root.PersistentFlags().Lookup("token"))

	newClient := func() *client.Client {
		return client.New(v.GetString("api-url"), v.GetString("token"))
	}

	root.AddCommand(
		NewContentsCmd(newClient),
		NewGenerateCmd(newClient),
		NewChatCmd(newClient),
		NewDeleteCmd(newClient),
		NewVersionCmd(),
	)
	return root
}

func Execute() error {
	return NewRootCmd().Execute()
}
