////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// The group subcommand creates groups and manages their members

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	jww "github.com/spf13/jwalterweatherman"
)

// groupCmd only groups its subcommands
var groupCmd = &cobra.Command{
	Use:   "group",
	Short: "Group commands for the signed in user",
	Args:  cobra.NoArgs,
}

var groupCreateCmd = &cobra.Command{
	Use:   "create <name> <memberID>...",
	Short: "Create a group administered by the signed in user",
	Args:  cobra.MinimumNArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		c := initClient()
		defer c.close()

		conversationID, err := c.CreateGroup(args[0], args[1:])
		if err != nil {
			jww.FATAL.Panicf("%+v", err)
		}
		fmt.Println(conversationID)
	},
}

var groupAddCmd = &cobra.Command{
	Use:   "add <conversationID> <userID>",
	Short: "Add a member to a group",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		c := initClient()
		defer c.close()

		if err := c.AddMember(args[0], args[1]); err != nil {
			jww.FATAL.Panicf("%+v", err)
		}
	},
}

var groupRemoveCmd = &cobra.Command{
	Use:   "remove <conversationID> <userID>",
	Short: "Remove a member from a group",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		c := initClient()
		defer c.close()

		if err := c.RemoveMember(args[0], args[1]); err != nil {
			jww.FATAL.Panicf("%+v", err)
		}
	},
}

func init() {
	groupCmd.AddCommand(groupCreateCmd)
	groupCmd.AddCommand(groupAddCmd)
	groupCmd.AddCommand(groupRemoveCmd)
	rootCmd.AddCommand(groupCmd)
}
