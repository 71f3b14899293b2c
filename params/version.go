package params

// Version is the node release, reported by web3_clientVersion and the CLI.
const Version = "0.3.0"

// ClientName prefixes the web3_clientVersion string.
const ClientName = "devnet"
