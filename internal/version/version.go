package version

const Version string = "0.1.0"
