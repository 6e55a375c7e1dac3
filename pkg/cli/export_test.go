package cli

var LoadSettings = loadSettings
