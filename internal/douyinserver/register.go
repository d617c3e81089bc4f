package douyinserver

import (
	"github.com/anatolykoptev/go_douyin/internal/gateway"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// ToolCount is the number of tools RegisterTools adds.
const ToolCount = 7

// RegisterTools registers the account management and fetch tools on server:
// account_list, account_add, account_update, account_delete, account_test,
// douyin_fetch, douyin_route.
func RegisterTools(server *mcp.Server, gw *gateway.Gateway) {
	registerAccountList(server, gw.Admin())
	registerAccountAdd(server, gw.Admin())
	registerAccountUpdate(server, gw.Admin())
	registerAccountDelete(server, gw.Admin())
	registerAccountTest(server, gw.Admin())
	registerFetch(server, gw)
	registerRoute(server, gw)
}
