package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"attune/internal/media"
	"attune/internal/metaedit"
)

func newTagsCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tags",
		Short: "Edit embedded metadata",
	}
	cmd.AddCommand(newTagsSetCommand(ctx))
	return cmd
}

func newTagsSetCommand(ctx *commandContext) *cobra.Command {
	var (
		title, artist, album, albumArtist  string
		composer, genre, comment           string
		year, track, trackTotal            int
		disc, discTotal, rating            int
		mbAlbumID, mbArtistID, mbTrackID   string
	)

	cmd := &cobra.Command{
		Use:   "set <path...>",
		Short: "Set metadata fields on one or more files",
		Long: "Writes the given fields into each file's embedded tags and mirrors\n" +
			"the result to extended attributes on volumes that support them.\n" +
			"Only flags that are passed change anything; passing an empty string\n" +
			"clears that field. Identifier fields cleared this way have their\n" +
			"frames removed entirely.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withLock(func(e *env) error {
				var fields media.FieldSet
				flags := cmd.Flags()
				if flags.Changed("title") {
					fields.Title = &title
				}
				if flags.Changed("artist") {
					fields.Artist = &artist
				}
				if flags.Changed("album") {
					fields.Album = &album
				}
				if flags.Changed("album-artist") {
					fields.AlbumArtist = &albumArtist
				}
				if flags.Changed("composer") {
					fields.Composer = &composer
				}
				if flags.Changed("genre") {
					fields.Genre = &genre
				}
				if flags.Changed("comment") {
					fields.Comment = &comment
				}
				if flags.Changed("year") {
					fields.Year = &year
				}
				if flags.Changed("track") {
					fields.Track = &track
				}
				if flags.Changed("track-total") {
					fields.TrackTotal = &trackTotal
				}
				if flags.Changed("disc") {
					fields.Disc = &disc
				}
				if flags.Changed("disc-total") {
					fields.DiscTotal = &discTotal
				}
				if flags.Changed("rating") {
					if rating < 0 || rating > 10 {
						return fmt.Errorf("rating must be 0..10, got %d", rating)
					}
					fields.Rating = &rating
				}
				if flags.Changed("mb-album-id") {
					fields.MBAlbumID = &mbAlbumID
				}
				if flags.Changed("mb-artist-id") {
					fields.MBArtistID = &mbArtistID
				}
				if flags.Changed("mb-track-id") {
					fields.MBTrackID = &mbTrackID
				}
				if fields.IsEmpty() {
					return fmt.Errorf("no fields given; pass at least one field flag")
				}

				files, err := collectAudioFiles(args, e)
				if err != nil {
					return err
				}
				if len(files) == 0 {
					return fmt.Errorf("no audio files under the given paths")
				}

				editor := metaedit.New(metaedit.Options{
					Attrs:    e.attrs,
					Policies: e.policies,
					Events:   &syncPrinter{cmd: cmd},
					Logger:   e.logger,
				})
				if err := editor.SaveTags(files, fields); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Updated %d files\n", len(files))
				fmt.Fprintln(cmd.OutOrStdout(), "Run `attune scan` to refresh the cache")
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "Track title")
	cmd.Flags().StringVar(&artist, "artist", "", "Artist")
	cmd.Flags().StringVar(&album, "album", "", "Album")
	cmd.Flags().StringVar(&albumArtist, "album-artist", "", "Album artist")
	cmd.Flags().StringVar(&composer, "composer", "", "Composer")
	cmd.Flags().StringVar(&genre, "genre", "", "Genre")
	cmd.Flags().StringVar(&comment, "comment", "", "Comment")
	cmd.Flags().IntVar(&year, "year", 0, "Release year")
	cmd.Flags().IntVar(&track, "track", 0, "Track number")
	cmd.Flags().IntVar(&trackTotal, "track-total", 0, "Track count")
	cmd.Flags().IntVar(&disc, "disc", 0, "Disc number")
	cmd.Flags().IntVar(&discTotal, "disc-total", 0, "Disc count")
	cmd.Flags().IntVar(&rating, "rating", 0, "Rating 0..10 (0 clears)")
	cmd.Flags().StringVar(&mbAlbumID, "mb-album-id", "", "MusicBrainz album id")
	cmd.Flags().StringVar(&mbArtistID, "mb-artist-id", "", "MusicBrainz artist id")
	cmd.Flags().StringVar(&mbTrackID, "mb-track-id", "", "MusicBrainz track id")
	return cmd
}
