////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// The send, read, direct, typing and delete subcommands each run one chat
// command

package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	jww "github.com/spf13/jwalterweatherman"
	"github.com/spf13/viper"

	"gitlab.com/elixxir/synapse/messenger"
)

var sendCmd = &cobra.Command{
	Use:   "send <conversationID> <text>...",
	Short: "Send a message to a conversation",
	Args:  cobra.MinimumNArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		c := initClient()
		defer c.close()

		c.start()
		send(c, args[0], strings.Join(args[1:], " "))
	},
}

var readCmd = &cobra.Command{
	Use:   "read <conversationID>",
	Short: "Mark every message of a conversation read",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		c := initClient()
		defer c.close()

		if err := c.MarkRead(args[0]); err != nil {
			jww.FATAL.Panicf("%+v", err)
		}
	},
}

var directCmd = &cobra.Command{
	Use:   "direct <userID>",
	Short: "Print the ID of the direct conversation with a user, " +
		"optionally sending the first message",
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		c := initClient()
		defer c.close()

		conversationID, err := c.OpenDirect(args[0])
		if err != nil {
			jww.FATAL.Panicf("%+v", err)
		}
		fmt.Println(conversationID)

		if text := viper.GetString(messageFlag); text != "" {
			c.start()
			send(c, conversationID, text)
		}
	},
}

var selfCmd = &cobra.Command{
	Use:   "self",
	Short: "Print the ID of the note to self conversation",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		c := initClient()
		defer c.close()

		conversationID, err := c.OpenSelf()
		if err != nil {
			jww.FATAL.Panicf("%+v", err)
		}
		fmt.Println(conversationID)
	},
}

var typingCmd = &cobra.Command{
	Use:   "typing <conversationID>",
	Short: "Show the user typing in a conversation for a while",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		c := initClient()
		defer c.close()

		c.start()
		if err := c.SetTyping(args[0]); err != nil {
			jww.FATAL.Panicf("%+v", err)
		}
		time.Sleep(viper.GetDuration(typingDurationFlag))
		if err := c.ClearTyping(args[0]); err != nil {
			jww.FATAL.Panicf("%+v", err)
		}
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <conversationID> <messageID>",
	Short: "Delete a message for every member",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		c := initClient()
		defer c.close()

		if err := c.DeleteMessage(args[0], args[1]); err != nil {
			jww.FATAL.Panicf("%+v", err)
		}
	},
}

var resendCmd = &cobra.Command{
	Use:   "resend",
	Short: "Resend every message queued while the remote was unreachable",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		c := initClient()
		defer c.close()

		n, err := c.ResendPending()
		if err != nil {
			jww.FATAL.Panicf("%+v", err)
		}
		fmt.Printf("Resent %d messages\n", n)
	},
}

func init() {
	directCmd.Flags().StringP(messageFlag, "m", "",
		"Text of a message to send right away")
	bindFlag(directCmd, messageFlag)

	typingCmd.Flags().Duration(typingDurationFlag, 3*time.Second,
		"How long the typing signal is held")
	bindFlag(typingCmd, typingDurationFlag)

	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(readCmd)
	rootCmd.AddCommand(directCmd)
	rootCmd.AddCommand(selfCmd)
	rootCmd.AddCommand(typingCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(resendCmd)
}

// send sends text and prints the message ID. A deferred send is reported
// but not fatal.
func send(c *client, conversationID, text string) {
	messageID, err := c.Send(conversationID, text)
	if errors.Is(err, messenger.ErrSendDeferred) {
		fmt.Printf("Queued %s, it is sent once the remote is reachable\n",
			messageID)
		return
	} else if err != nil {
		jww.FATAL.Panicf("%+v", err)
	}
	fmt.Printf("Sent %s\n", messageID)
}
