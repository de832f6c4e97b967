////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// The login and logout subcommands manage the signed in identity

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	jww "github.com/spf13/jwalterweatherman"
	"github.com/spf13/viper"
)

var loginCmd = &cobra.Command{
	Use:   "login <userID>",
	Short: "Sign in and publish the display name of the user",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		c := initClient()
		defer c.close()

		err := c.Login(args[0], viper.GetString(displayNameFlag))
		if err != nil {
			jww.FATAL.Panicf("%+v", err)
		}
		fmt.Printf("Signed in as %s\n", args[0])
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Write the user offline and forget the signed in identity",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		c := initClient()
		defer c.close()

		c.start()
		if err := c.Logout(); err != nil {
			jww.FATAL.Panicf("%+v", err)
		}
		fmt.Println("Signed out")
	},
}

func init() {
	loginCmd.Flags().StringP(displayNameFlag, "n", "",
		"Display name shown to other users")
	bindFlag(loginCmd, displayNameFlag)

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
}
