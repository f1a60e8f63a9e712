// Package logging builds the structured logger shared by the commands.
//
// Records go to the console as text and to a size-rotated JSON file in the
// configured log directory:
//
//	logger, err := logging.New(settings, os.Stderr)
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//	slog.SetDefault(logger.Logger)
package logging
