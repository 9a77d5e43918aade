package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/devkiraa/Hang/internal/invite"
)

func newInviteCmd(v *viper.Viper) *cobra.Command {
	var passcode, file, web string
	cmd := &cobra.Command{
		Use:   "invite <room-id | link>",
		Short: "Build an invite link, or decode one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if strings.Contains(args[0], "://") {
				inv, err := invite.Parse(args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "room:     %s\n", inv.RoomID)
				if inv.Passcode != "" {
					fmt.Fprintf(out, "passcode: %s\n", inv.Passcode)
				}
				if inv.FileName != "" {
					fmt.Fprintf(out, "file:     %s\n", inv.FileName)
				}
				if inv.Server != "" {
					fmt.Fprintf(out, "server:   %s\n", inv.Server)
				}
				return nil
			}

			inv := invite.Invite{
				RoomID:   args[0],
				Passcode: passcode,
				FileName: file,
				Server:   v.GetString(serverKey),
			}
			fmt.Fprintln(out, inv.URL())
			if web != "" {
				fmt.Fprintln(out, inv.WebURL(web))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&passcode, "passcode", "", "room passcode to embed")
	cmd.Flags().StringVar(&file, "file", "", "file name hint for the guest")
	cmd.Flags().StringVar(&web, "web", "", "also print a web link for this relay base url")
	return cmd
}
