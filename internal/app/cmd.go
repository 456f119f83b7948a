package app

// Command はinvoicedashバイナリのサブコマンド。
type Command string

const (
	// CommandServe はダッシュボード画面を配信する。
	CommandServe Command = "serve"
	// CommandMigrate はaccountsとsessionsのスキーマを最新にして終了する。
	CommandMigrate Command = "migrate"
	// CommandMockAPI は請求書とアクティビティを返すローカル用データソースを配信する。
	CommandMockAPI Command = "mockapi"
	// CommandHealthcheck は起動中のダッシュボードの /health を叩いて終了コードで結果を返す。
	// シェルのないdistrolessイメージのHEALTHCHECKから呼ぶ。
	CommandHealthcheck Command = "healthcheck"
)

// commands は受け付けるサブコマンド名の一覧。
var commands = map[string]Command{
	string(CommandServe):       CommandServe,
	string(CommandMigrate):     CommandMigrate,
	string(CommandMockAPI):     CommandMockAPI,
	string(CommandHealthcheck): CommandHealthcheck,
}

// ParseCommand はos.Args[1:]の先頭からサブコマンドを決める。
// 指定がない場合や知らない名前の場合はダッシュボードを起動する。
func ParseCommand(args []string) Command {
	if len(args) > 0 {
		if cmd, ok := commands[args[0]]; ok {
			return cmd
		}
	}
	return CommandServe
}
