// ABOUTME: Package roster owns the directory of end-user conversations and the unread set.
// ABOUTME: The open-conversation pointer lives here so unread guards are centralized.

package roster
