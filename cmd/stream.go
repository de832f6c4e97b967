////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// The inbox and chat subcommands print live snapshots until exit

package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"gitlab.com/elixxir/synapse/aggregate"
	"gitlab.com/elixxir/synapse/chat"
)

var inboxCmd = &cobra.Command{
	Use:   "inbox",
	Short: "Print the conversation list of the signed in user as it changes",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		c := initClient()
		defer c.close()

		c.start()
		inbox := c.Inbox(printInbox)
		waitForExit()
		inbox.Close()
	},
}

var chatCmd = &cobra.Command{
	Use:   "chat <conversationID>",
	Short: "Print the messages of a conversation with their status as " +
		"they change",
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		c := initClient()
		defer c.close()

		c.start()
		conv := c.Conversation(args[0], printConversation)
		for i := 0; i < viper.GetInt(olderFlag); i++ {
			conv.LoadOlder()
		}
		waitForExit()
		conv.Close()
	},
}

func init() {
	chatCmd.Flags().Int(olderFlag, 0,
		"Number of pages of older messages to load")
	bindFlag(chatCmd, olderFlag)

	rootCmd.AddCommand(inboxCmd)
	rootCmd.AddCommand(chatCmd)
}

func printInbox(s aggregate.InboxSnapshot) {
	var b strings.Builder
	fmt.Fprintf(&b, "--- inbox of %s (%s)\n", displayUser(s.UserID, s.Users),
		connectionState(s.IsConnected, s.Stale))

	for _, conv := range s.Conversations {
		fmt.Fprintf(&b, "%s  %s", conv.ID, conv.Title(s.UserID, s.Users))
		if cnt := s.Counts[conv.ID]; cnt.Unread > 0 {
			fmt.Fprintf(&b, " [%d unread]", cnt.Unread)
		}
		if online := onlineOthers(conv, s.UserID, s.Presence); len(online) > 0 {
			fmt.Fprintf(&b, " (online: %s)", strings.Join(online, ", "))
		}
		b.WriteString("\n")

		if text := s.TypingText[conv.ID]; text != "" {
			fmt.Fprintf(&b, "    %s\n", text)
		} else if conv.LastMessage != "" {
			fmt.Fprintf(&b, "    %s\n", conv.LastMessage)
		}
	}
	fmt.Print(b.String())
}

func printConversation(s aggregate.ConversationSnapshot) {
	var b strings.Builder
	if !s.Found {
		fmt.Fprintf(&b, "--- %s has no messages yet (%s)\n", s.ConversationID,
			connectionState(s.IsConnected, s.Stale))
		fmt.Print(b.String())
		return
	}

	fmt.Fprintf(&b, "--- %s (%s)\n", s.ConversationID,
		connectionState(s.IsConnected, s.Stale))
	if s.HasOlder {
		b.WriteString("    ...\n")
	}
	for _, msg := range s.Messages {
		text := msg.Text
		if msg.Deleted {
			text = "<deleted>"
		}
		fmt.Fprintf(&b, "%s  %s: %s [%s]\n",
			msg.OrderKey().Local().Format("15:04:05"),
			displayUser(msg.SenderID, s.Users), text, msg.Status)
	}
	if s.TypingText != "" {
		fmt.Fprintf(&b, "    %s\n", s.TypingText)
	}
	fmt.Print(b.String())
}

func connectionState(connected, stale bool) string {
	switch {
	case stale:
		return "stale"
	case connected:
		return "connected"
	default:
		return "offline"
	}
}

func displayUser(userID string, users map[string]chat.User) string {
	if u, ok := users[userID]; ok {
		return u.Name()
	}
	return userID
}

// onlineOthers returns the online members besides selfID, sorted.
func onlineOthers(conv chat.Conversation, selfID string,
	presence map[string]bool) []string {
	var online []string
	for _, memberID := range conv.Others(selfID) {
		if presence[memberID] {
			online = append(online, memberID)
		}
	}
	sort.Strings(online)
	return online
}
